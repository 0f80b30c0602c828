package service

import (
	"crypto/rand"
	"strings"
)

// Unambiguous alphabet: no 0/O, 1/I/L.
const accessCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const accessCodeLen = 8

func generateAccessCode() (string, error) {
	buf := make([]byte, accessCodeLen)
	out := make([]byte, 0, accessCodeLen)
	limit := byte(256 - 256%len(accessCodeAlphabet))
	for len(out) < accessCodeLen {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, accessCodeAlphabet[int(b)%len(accessCodeAlphabet)])
			if len(out) == accessCodeLen {
				break
			}
		}
	}
	return string(out[:4]) + "-" + string(out[4:]), nil
}

// NormalizeAccessCode uppercases user input and restores the dash grouping.
func NormalizeAccessCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	if len(code) != accessCodeLen {
		return ""
	}
	for _, r := range code {
		if !strings.ContainsRune(accessCodeAlphabet, r) {
			return ""
		}
	}
	return code[:4] + "-" + code[4:]
}
