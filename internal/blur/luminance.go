package blur

// Rec. 601 luma weights
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Luminance reduces buf to one intensity value per pixel.
//
// Single-channel buffers pass through unchanged and two-channel (gray+alpha)
// buffers use their first channel. Buffers with three or more channels are
// weighted with the Rec. 601 luma coefficients; channels past the third
// (usually alpha) are ignored.
func Luminance(buf ImageBuffer) (*Plane, error) {
	if err := buf.validate(); err != nil {
		return nil, err
	}

	lum := newPlane(buf.Width, buf.Height)
	ch := buf.Channels
	for i := range lum.Values {
		px := buf.Pix[i*ch : i*ch+ch]
		if ch < 3 {
			lum.Values[i] = px[0]
			continue
		}
		lum.Values[i] = lumaR*px[0] + lumaG*px[1] + lumaB*px[2]
	}
	return lum, nil
}
