package audiocore

// Resampler converts mono PCM from the device rate to the model rate by
// linear interpolation, keeping cross-frame continuity so chunk boundaries
// never see a seam.
type Resampler struct {
	inRate  int
	outRate int
	step    float64
	pos     float64
	carry   float32
	primed  bool
}

// NewResampler creates a resampler from inRate to outRate.
func NewResampler(inRate, outRate int) *Resampler {
	return &Resampler{
		inRate:  inRate,
		outRate: outRate,
		step:    float64(inRate) / float64(outRate),
	}
}

// Process converts one frame. At equal rates the input is copied through.
func (r *Resampler) Process(in []float32) []float32 {
	if len(in) == 0 {
		return nil
	}
	if r.inRate == r.outRate {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	// Prepend the carry sample so interpolation spans the frame seam.
	var buf []float32
	if r.primed {
		buf = make([]float32, 0, len(in)+1)
		buf = append(buf, r.carry)
		buf = append(buf, in...)
	} else {
		buf = in
		r.primed = true
	}

	intervals := len(buf) - 1
	out := make([]float32, 0, int(float64(len(in))/r.step)+2)
	for r.pos < float64(intervals) {
		idx := int(r.pos)
		t := float32(r.pos - float64(idx))
		out = append(out, buf[idx]*(1-t)+buf[idx+1]*t)
		r.pos += r.step
	}

	r.carry = buf[len(buf)-1]
	r.pos -= float64(intervals)
	return out
}
