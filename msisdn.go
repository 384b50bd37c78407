package fbsmslib

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// validateReceiver checks that n looks like a phone number the router can
// dial. Numbers without a country code are parsed for region. A possible
// number is enough, it does not have to be assigned.
func validateReceiver(n, region string) (string, error) {
	n = strings.TrimSpace(n)
	if n == "" {
		return "", newError(ErrInvalidReceiver, "receiver is empty", nil)
	}
	pn, err := libphonenumber.Parse(n, region)
	if err != nil {
		return "", newError(ErrInvalidReceiver, n, err)
	}
	if !libphonenumber.IsPossibleNumber(pn) {
		return "", newError(ErrInvalidReceiver, n+" is not a possible phone number", nil)
	}
	return n, nil
}

// cleanMSISDNs normalises ns to E.164 for region. Invalid numbers are
// returned separately; duplicates are dropped, keeping the first
// occurrence.
func cleanMSISDNs(ns []string, region string) (valid, invalid []string) {
	valid = []string{}
	invalid = []string{}
	for _, n := range ns {
		if _, err := validateReceiver(n, region); err != nil {
			invalid = append(invalid, n)
			continue
		}
		pn, _ := libphonenumber.Parse(strings.TrimSpace(n), region)
		valid = append(valid, libphonenumber.Format(pn, libphonenumber.E164))
	}
	return removeDuplicates(valid), invalid
}

func removeDuplicates(ns []string) []string {
	fnd := map[string]bool{}
	res := []string{}
	for _, n := range ns {
		if !fnd[n] {
			fnd[n] = true
			res = append(res, n)
		}
	}
	return res
}
