package spectrum

// SampleBuffer holds one bounded capture of complex baseband samples
type SampleBuffer struct {
	Samples         []complex64 // Interleaved I/Q pairs decoded to complex values
	SampleRate      float64     // Sample rate the buffer was acquired with, in Hz
	CenterFrequency float64     // Tuned center frequency, in Hz
}

// Len returns the number of complex samples in the buffer
func (b *SampleBuffer) Len() int {
	return len(b.Samples)
}

// Frame is a power spectrum derived from a single SampleBuffer.
// Frequencies and PowerDB are parallel slices of the same length (the FFT size),
// and the frequency spacing is uniform and equals SampleRate / FFT size.
type Frame struct {
	Frequencies     []float64 `json:"frequencies"`    // Absolute bin frequencies in Hz, ascending
	PowerDB         []float64 `json:"power_db"`       // Bin power in dB
	NoiseFloorDB    float64   `json:"noise_floor_db"` // Median of PowerDB
	CenterFrequency float64   `json:"center_freq"`
	SampleRate      float64   `json:"sample_rate"`
}

// Len returns the number of bins in the frame
func (f *Frame) Len() int {
	return len(f.PowerDB)
}

// BinWidth returns the frequency spacing between adjacent bins
func (f *Frame) BinWidth() float64 {
	if len(f.PowerDB) == 0 {
		return 0
	}
	return f.SampleRate / float64(len(f.PowerDB))
}

// Signal describes one detected emission within a Frame
type Signal struct {
	Frequency   float64 `json:"frequency"`         // Frequency of the strongest bin in the region
	PowerDB     float64 `json:"power_db"`          // Power at Frequency
	Bandwidth   float64 `json:"bandwidth"`         // Region width in bins times bin spacing
	RegionStart float64 `json:"region_start_freq"` // Frequency of the first bin of the region
	RegionEnd   float64 `json:"region_end_freq"`   // Frequency of the last bin of the region
}
