// Package accesskey builds and validates the 44-digit NF-e access key.
//
// The key is a fixed-layout 43-digit payload plus a modulo-11 check
// digit:
//
//	cUF(2) AAMM(4) CNPJ(14) mod(2) serie(3) nNF(9) tpEmis(1) cNF(8) DV(1)
package accesskey

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// DocumentModel is the NF-e model constant ("55")
const DocumentModel = 55

// EmissionNormal is the normal emission-type code
const EmissionNormal = 1

// KeyLength is the full key length including the check digit
const KeyLength = 44

// Params are the inputs to key generation
type Params struct {
	UFCode       int       // jurisdiction numeric code, 2 digits
	IssuedAt     time.Time // contributes AAMM
	TaxID        string    // emitter CNPJ, up to 14 digits
	Series       int
	Number       int64
	EmissionType int
	RandomCode   int // 8-digit cNF; negative means generate
}

// Generate builds the 44-digit access key. A result of any other
// length is a programming error and panics.
func Generate(p Params) (string, error) {
	if p.UFCode < 11 || p.UFCode > 99 {
		return "", fmt.Errorf("invalid UF code %d", p.UFCode)
	}
	if len(p.TaxID) == 0 || len(p.TaxID) > 14 {
		return "", fmt.Errorf("invalid tax ID %q", p.TaxID)
	}
	if p.Series < 0 || p.Series > 999 {
		return "", fmt.Errorf("series %d out of range [0, 999]", p.Series)
	}
	if p.Number < 0 || p.Number > 999999999 {
		return "", fmt.Errorf("document number %d out of range [0, 999999999]", p.Number)
	}
	emis := p.EmissionType
	if emis == 0 {
		emis = EmissionNormal
	}
	if emis < 1 || emis > 9 {
		return "", fmt.Errorf("emission type %d out of range [1, 9]", p.EmissionType)
	}
	cnf := p.RandomCode
	if cnf > 99999999 {
		return "", fmt.Errorf("random component %d out of range [0, 99999999]", p.RandomCode)
	}
	if cnf < 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(100000000))
		if err != nil {
			return "", fmt.Errorf("random component: %w", err)
		}
		cnf = int(n.Int64())
	}

	payload := fmt.Sprintf("%02d%02d%02d%s%02d%03d%09d%d%08d",
		p.UFCode,
		p.IssuedAt.Year()%100,
		int(p.IssuedAt.Month()),
		zeroPad(p.TaxID, 14),
		DocumentModel,
		p.Series,
		p.Number,
		emis,
		cnf,
	)
	if len(payload) != KeyLength-1 {
		panic(fmt.Sprintf("accesskey: payload is %d digits, want %d", len(payload), KeyLength-1))
	}

	key := payload + fmt.Sprintf("%d", CheckDigit(payload))
	if len(key) != KeyLength {
		panic(fmt.Sprintf("accesskey: key is %d digits, want %d", len(key), KeyLength))
	}
	return key, nil
}

// CheckDigit computes the modulo-11 check digit of a numeric payload.
// Weights 2..9 repeat cyclically over the digits from right to left;
// the digit is 0 when the remainder of the weighted sum is below 2,
// otherwise 11 minus the remainder.
func CheckDigit(payload string) int {
	sum := 0
	weight := 2
	for i := len(payload) - 1; i >= 0; i-- {
		sum += int(payload[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

// Valid reports whether key is 44 numeric digits whose last digit is
// the check digit of the preceding 43
func Valid(key string) bool {
	if len(key) != KeyLength {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return false
		}
	}
	return int(key[KeyLength-1]-'0') == CheckDigit(key[:KeyLength-1])
}

func zeroPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
