package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ayusman/repcoach/internal/profile"
	"github.com/ayusman/repcoach/internal/store"
)

type exerciseSummary struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	MuscleGroup  string          `json:"muscle_group"`
	Pattern      profile.Pattern `json:"pattern"`
	PrimaryJoint string          `json:"primary_joint"`
}

type listExercisesResponse struct {
	Exercises []exerciseSummary `json:"exercises"`
}

type profileResponse struct {
	ID        string           `json:"id"`
	Profile   *profile.Profile `json:"profile"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
}

type listProfilesResponse struct {
	Profiles []profileResponse `json:"profiles"`
}

func toProfileResponse(rec *store.ProfileRecord) profileResponse {
	return profileResponse{
		ID:        rec.ID,
		Profile:   rec.Profile,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
	}
}

// offered reports whether id is part of the configured exercise catalog.
func (s *Server) offered(id string) bool {
	return len(s.config.Exercises) == 0 || slices.Contains(s.config.Exercises, id)
}

func (s *Server) catalogIDs() []string {
	if len(s.config.Exercises) == 0 {
		return s.registry.IDs()
	}
	return s.config.Exercises
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	ids := s.catalogIDs()
	resp := listExercisesResponse{Exercises: make([]exerciseSummary, 0, len(ids))}
	for _, id := range ids {
		p, ok := s.registry.Lookup(id)
		if !ok {
			continue
		}
		resp.Exercises = append(resp.Exercises, exerciseSummary{
			ID:           p.ID,
			Name:         p.Name,
			MuscleGroup:  p.MuscleGroup,
			Pattern:      p.Pattern,
			PrimaryJoint: p.PrimaryJoint,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.registry.Lookup(id)
	if !ok || !s.offered(id) {
		writeError(w, http.StatusNotFound, "exercise not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	records, err := s.config.Store.Profiles().List()
	if err != nil {
		s.log.Error("listing profiles", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}

	resp := listProfilesResponse{Profiles: make([]profileResponse, 0, len(records))}
	for _, rec := range records {
		resp.Profiles = append(resp.Profiles, toProfileResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	rec, err := s.config.Store.Profiles().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(rec))
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := profile.Normalize(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := &store.ProfileRecord{ID: uuid.New().String(), Profile: &p}
	err := s.commitProfiles(rec.ID, &p, func() error {
		return s.config.Store.Profiles().Create(rec)
	})
	if err != nil {
		s.writeCommitError(w, err)
		return
	}
	s.log.Info("profile stored", "id", rec.ID, "exercise", p.ID)

	writeJSON(w, http.StatusCreated, toProfileResponse(rec))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	profiles := s.config.Store.Profiles()
	rec, err := profiles.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := profile.Normalize(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec.Profile = &p
	err = s.commitProfiles(rec.ID, &p, func() error {
		return profiles.Update(rec)
	})
	if err != nil {
		s.writeCommitError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(rec))
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.commitProfiles(id, nil, func() error {
		return s.config.Store.Profiles().Delete(id)
	})
	if err != nil {
		s.writeCommitError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// errRegistryRejected marks a profile change whose resulting registry
// would not validate. The store is left unchanged.
var errRegistryRejected = errors.New("profile change rejected")

// commitProfiles checks the registry that results from replacing stored
// record id with p (or dropping it when p is nil) before running write,
// then reloads. A rejected change never reaches the store.
func (s *Server) commitProfiles(id string, p *profile.Profile, write func() error) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	records, err := s.config.Store.Profiles().List()
	if err != nil {
		return err
	}
	stored := make([]*profile.Profile, 0, len(records)+1)
	for _, rec := range records {
		if rec.ID != id {
			stored = append(stored, rec.Profile)
		}
	}
	if p != nil {
		stored = append(stored, p)
	}
	if _, err := s.buildRegistry(stored); err != nil {
		return fmt.Errorf("%w: %w", errRegistryRejected, err)
	}

	if err := write(); err != nil {
		return err
	}
	return s.reloadLocked()
}

func (s *Server) writeCommitError(w http.ResponseWriter, err error) {
	if errors.Is(err, errRegistryRejected) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeStoreError(w, err)
}

func (s *Server) handleReloadProfiles(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(); err != nil {
		s.log.Error("reloading profiles", "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"profiles": s.registry.Len()})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "profile not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "a profile for this exercise already exists")
	default:
		s.log.Error("profile store", "error", err)
		writeError(w, http.StatusInternalServerError, "profile store failure")
	}
}

// Reload rebuilds the registry from the catalog and any stored profiles,
// with stored profiles overriding catalog entries. The registry is left
// untouched if the result fails validation or does not cover every
// configured exercise. Running sessions keep the profile they started with.
func (s *Server) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	return s.reloadLocked()
}

func (s *Server) reloadLocked() error {
	var stored []*profile.Profile
	if s.config.Store != nil {
		var err error
		stored, err = s.config.Store.Profiles().Profiles()
		if err != nil {
			return fmt.Errorf("loading stored profiles: %w", err)
		}
	}

	base, err := s.buildRegistry(stored)
	if err != nil {
		return err
	}

	if err := s.registry.Replace(base, stored); err != nil {
		return err
	}
	s.log.Info("profiles loaded", "catalog", len(base), "stored", len(stored))
	return nil
}

// buildRegistry loads the catalog and checks that it, overlaid with stored,
// forms a valid registry covering every configured exercise. It returns
// the catalog profiles.
func (s *Server) buildRegistry(stored []*profile.Profile) ([]*profile.Profile, error) {
	base, err := profile.Load(s.config.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	next, err := profile.NewRegistry(base, stored)
	if err != nil {
		return nil, err
	}
	if err := next.CheckCatalog(s.config.Exercises); err != nil {
		return nil, err
	}
	return base, nil
}
