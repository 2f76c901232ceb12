package sweep

import (
	"fmt"
	"slices"
	"strings"
)

// Profile is a named, preset sweep range
type Profile struct {
	Key   string
	Name  string
	Range Range
}

const profileStep = 1.6e6

var profiles = []Profile{
	{"fm", "FM Radio Broadcast", Range{88e6, 108e6, profileStep}},
	{"airband", "Aircraft (Airband + ADS-B)", Range{118e6, 137e6, profileStep}},
	{"vhf", "VHF High (Ham 2m, Marine, Weather)", Range{144e6, 174e6, profileStep}},
	{"uhf", "UHF (PMR, ISM 433, Ham 70cm)", Range{400e6, 470e6, profileStep}},
	{"lte20", "LTE Band 20 (800 MHz)", Range{790e6, 862e6, profileStep}},
	{"gsm900", "GSM 900", Range{925e6, 960e6, profileStep}},
	{"adsb", "ADS-B (1090 MHz)", Range{1088e6, 1092e6, profileStep}},
	{"lte3", "LTE Band 3 (1800 MHz)", Range{1805e6, 1880e6, profileStep}},
	{"wifi", "WiFi 2.4 GHz", Range{2400e6, 2500e6, profileStep}},
	{"lte7", "LTE Band 7 (2600 MHz)", Range{2620e6, 2690e6, profileStep}},
	{"full", "Full spectrum (70 MHz - 6 GHz)", Range{70e6, 6000e6, profileStep}},
}

// Profiles returns the preset ranges in display order
func Profiles() []Profile {
	return slices.Clone(profiles)
}

// LookupProfile finds a preset by key, case-insensitively
func LookupProfile(key string) (Profile, error) {
	for _, p := range profiles {
		if strings.EqualFold(p.Key, key) {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("unknown sweep profile: %q", key)
}
