package pose

import "math"

// Angle returns the angle at vertex b formed by the rays b→a and b→c, in
// degrees within [0, 180]. Any keypoint below MinConfidence yields 0.
func Angle(a, b, c Keypoint) float64 {
	if !a.Visible() || !b.Visible() || !c.Visible() {
		return 0
	}

	deg := math.Abs(rawAngle(a, b, c))
	if deg > 180 {
		deg = 360 - deg
	}
	return deg
}

// AngleOf is Angle over raw [x, y, confidence] triples. Triples with fewer
// than three components yield 0.
func AngleOf(a, b, c []float64) float64 {
	if len(a) < 3 || len(b) < 3 || len(c) < 3 {
		return 0
	}
	return Angle(
		Keypoint{X: a[0], Y: a[1], Confidence: a[2]},
		Keypoint{X: b[0], Y: b[1], Confidence: b[2]},
		Keypoint{X: c[0], Y: c[1], Confidence: c[2]},
	)
}

// SignedAngle returns the signed rotation from ray b→a to ray b→c in degrees,
// within (-180, 180]. Unlike Angle it is not reflected.
func SignedAngle(a, b, c Keypoint) float64 {
	if !a.Visible() || !b.Visible() || !c.Visible() {
		return 0
	}
	return rawAngle(a, b, c)
}

// LateralDeviation measures how far the chain a-b-c bends away from a straight
// line, in degrees. It is 0 for a collinear chain and its sign tells which
// side b has drifted to.
func LateralDeviation(a, b, c Keypoint) float64 {
	if !a.Visible() || !b.Visible() || !c.Visible() {
		return 0
	}
	signed := rawAngle(a, b, c)
	dev := 180 - math.Abs(signed)
	if signed < 0 {
		return -dev
	}
	return dev
}

// Distance returns the Euclidean distance between two keypoints in the image plane.
func Distance(a, b Keypoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func rawAngle(a, b, c Keypoint) float64 {
	bax, bay := a.X-b.X, a.Y-b.Y
	bcx, bcy := c.X-b.X, c.Y-b.Y

	cross := bax*bcy - bay*bcx
	dot := bax*bcx + bay*bcy
	deg := math.Atan2(cross, dot) * 180 / math.Pi
	if math.IsNaN(deg) {
		// Coordinates large enough to overflow have no usable direction.
		return 0
	}
	return deg
}

// horizontalRef returns a point one unit further along the horizontal from
// anchor, on the side facing away from other. It inherits anchor's confidence.
func horizontalRef(anchor, other Keypoint) Keypoint {
	dir := 1.0
	if anchor.X < other.X {
		dir = -1
	}
	return Keypoint{X: anchor.X + dir, Y: anchor.Y, Confidence: anchor.Confidence}
}

// verticalRef returns a point one unit below anchor in image coordinates.
func verticalRef(anchor Keypoint) Keypoint {
	return Keypoint{X: anchor.X, Y: anchor.Y + 1, Confidence: anchor.Confidence}
}
