package band

// typeRule labels a frequency range, in MHz and inclusive on both ends.
// label receives the bandwidth in kHz.
type typeRule struct {
	low, high float64
	label     func(bwKHz float64) string
}

func fixed(s string) func(float64) string {
	return func(float64) string { return s }
}

// typeRules is independent from the routing table on purpose: it only feeds annotations.
var typeRules = []typeRule{
	{88, 108, fixed("FM Radio")},
	{118, 137, fixed("Airband Voice")},
	{137, 138, fixed("NOAA Satellite")},
	{144, 148, fixed("2m Ham Radio")},
	{156, 162, fixed("Marine VHF")},
	{400, 512, func(bw float64) string {
		if bw < 25 {
			return "PMR/Business"
		}
		return "ISM / IoT"
	}},
	{700, 900, func(bw float64) string {
		if bw > 1000 {
			return "LTE / 4G"
		}
		return "Pager/Utility"
	}},
	{1090, 1091, fixed("ADS-B Aircraft")},
	{1575, 1577, fixed("GPS L1")},
	{1800, 1900, fixed("LTE / GSM")},
	{2400, 2500, func(bw float64) string {
		if bw > 5000 {
			return "WiFi 2.4 GHz"
		}
		return "Bluetooth/ZigBee"
	}},
	{2600, 2700, fixed("LTE Band 7")},
}

// EstimateSignalType returns a human-readable guess of the emission type.
// It never influences decoder selection.
func EstimateSignalType(freq, bandwidth float64) string {
	mhz := freq / 1e6
	khz := bandwidth / 1e3

	for _, r := range typeRules {
		if r.low <= mhz && mhz <= r.high {
			return r.label(khz)
		}
	}
	return "Unknown"
}
