package service

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/iliyamo/labdesk/internal/model"
)

const num = `(\d+(?:\.\d+)?)`

var (
	betweenRE = regexp.MustCompile(`^` + num + `\s*(?:-|–|to)\s*` + num + `$`)
	belowRE   = regexp.MustCompile(`^(<=|<|≤)\s*` + num + `$`)
	aboveRE   = regexp.MustCompile(`^(>=|>|≥)\s*` + num + `$`)
	genderRE  = regexp.MustCompile(`(?i)\b(male|female|m|f)\s*:`)
)

// Flag compares value with a free-text normal range. Understood forms are
// "a-b", "< b", "<= b", "> a", ">= a", thousands separators and
// gender-qualified lists such as "M: 13.5-17.5, F: 12.0-15.5". Anything
// else, or a non-numeric value, gives FlagNone.
func Flag(normalRange, gender, value string) model.Flag {
	v, ok := parseNumber(value)
	if !ok {
		return model.FlagNone
	}
	rng := strings.TrimSpace(normalRange)
	if genderRE.MatchString(rng) {
		rng, ok = rangeForGender(rng, gender)
		if !ok {
			return model.FlagNone
		}
	}
	rng = strings.ReplaceAll(rng, ",", "")

	if m := betweenRE.FindStringSubmatch(rng); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		if lo > hi {
			return model.FlagNone
		}
		switch {
		case v < lo:
			return model.FlagLow
		case v > hi:
			return model.FlagHigh
		}
		return model.FlagNormal
	}
	if m := belowRE.FindStringSubmatch(rng); m != nil {
		hi, _ := strconv.ParseFloat(m[2], 64)
		if v < hi || (m[1] != "<" && v == hi) {
			return model.FlagNormal
		}
		return model.FlagHigh
	}
	if m := aboveRE.FindStringSubmatch(rng); m != nil {
		lo, _ := strconv.ParseFloat(m[2], 64)
		if v > lo || (m[1] != ">" && v == lo) {
			return model.FlagNormal
		}
		return model.FlagLow
	}
	return model.FlagNone
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// rangeForGender picks the segment labelled with the patient's gender
// from "M: 13.5-17.5, F: 12.0-15.5".
func rangeForGender(rng, gender string) (string, bool) {
	g := strings.ToLower(strings.TrimSpace(gender))
	if g == "" {
		return "", false
	}
	want := g[:1]

	locs := genderRE.FindAllStringSubmatchIndex(rng, -1)
	for i, loc := range locs {
		label := strings.ToLower(rng[loc[2]:loc[3]])
		if label[:1] != want {
			continue
		}
		end := len(rng)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		seg := strings.TrimSpace(rng[loc[1]:end])
		seg = strings.TrimRight(seg, ",; ")
		return seg, seg != ""
	}
	return "", false
}
