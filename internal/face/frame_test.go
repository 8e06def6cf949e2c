package face

// frameOpts parameterizes a synthetic landmark frame for tests: a neutral
// face centered in the frame, with optional whole-head translation, eye
// corner tilt, pupil shift and eyelid closure.
type frameOpts struct {
	dx, dy  float64 // whole-head translation
	rollDY  float64 // right eye outer corner vertical offset
	pupilDX float64 // pupil shift from eye center
	pupilDY float64
	closed  bool
	iris    bool
}

func buildFrame(o frameOpts) *LandmarkFrame {
	count := MeshLandmarks
	if o.iris {
		count = TotalLandmarks
	}
	pts := make([]Point, count)
	for i := range pts {
		pts[i] = Point{X: 0.5 + o.dx, Y: 0.5 + o.dy}
	}

	pts[NoseTip] = Point{X: 0.5 + o.dx, Y: 0.5 + o.dy}
	pts[Chin] = Point{X: 0.5 + o.dx, Y: 0.7 + o.dy}
	pts[LeftEyeOuter] = Point{X: 0.35 + o.dx, Y: 0.5 + o.dy}
	pts[LeftEyeInner] = Point{X: 0.45 + o.dx, Y: 0.5 + o.dy}
	pts[RightEyeInner] = Point{X: 0.55 + o.dx, Y: 0.5 + o.dy}
	pts[RightEyeOuter] = Point{X: 0.65 + o.dx, Y: 0.5 + o.dy + o.rollDY}
	pts[MouthLeft] = Point{X: 0.45 + o.dx, Y: 0.62 + o.dy}
	pts[MouthRight] = Point{X: 0.55 + o.dx, Y: 0.62 + o.dy}

	gap := 0.03
	if o.closed {
		gap = 0
	}
	pts[LeftEyeUpper] = Point{X: 0.40 + o.dx, Y: 0.5 + o.dy - gap/2}
	pts[LeftEyeLower] = Point{X: 0.40 + o.dx, Y: 0.5 + o.dy + gap/2}
	pts[RightEyeUpper] = Point{X: 0.60 + o.dx, Y: 0.5 + o.dy - gap/2}
	pts[RightEyeLower] = Point{X: 0.60 + o.dx, Y: 0.5 + o.dy + gap/2}

	if o.iris {
		lp := Point{X: 0.40 + o.dx + o.pupilDX, Y: 0.5 + o.dy + o.pupilDY}
		rp := Point{X: 0.60 + o.dx + o.pupilDX, Y: 0.5 + o.dy + o.pupilDY}
		for i := 0; i < IrisClusterLen; i++ {
			pts[LeftIrisStart+i] = lp
			pts[RightIrisStart+i] = rp
		}
	}

	return &LandmarkFrame{Points: pts}
}
