// Package genotype classifies genotype calls and reshapes long-form call
// tables into one row per sample.
package genotype

import (
	"fmt"
	"strings"
)

// Category is the ordinal allele category uploaded for each SNP.
type Category string

// Allele categories.
const (
	HomozygousReference Category = "1"
	Heterozygous        Category = "2" // Also any other non-reference homozygous state
	HomozygousAlternate Category = "3"
)

// Classifier maps diploid genotype calls onto categories. The alternate index
// depends on the ALT ordering of the panel's variant file, so it is set per
// panel rather than assumed to be 1.
type Classifier struct {
	RefIndex string
	AltIndex string
}

// DefaultClassifier uses reference index 0 and alternate index 2.
func DefaultClassifier() Classifier {
	return Classifier{RefIndex: "0", AltIndex: "2"}
}

// Classify returns the category of a phased ("0|2") or unphased ("0/2") call.
func (c Classifier) Classify(call string) (Category, error) {
	a, b, err := SplitAlleles(call)
	if err != nil {
		return "", err
	}

	switch {
	case a == c.RefIndex && b == c.RefIndex:
		return HomozygousReference, nil
	case a == c.AltIndex && b == c.AltIndex:
		return HomozygousAlternate, nil
	default:
		return Heterozygous, nil
	}
}

// SplitAlleles splits a diploid call into its two allele indices.
func SplitAlleles(call string) (string, string, error) {
	i := strings.IndexAny(call, "|/")
	if i < 0 {
		return "", "", &FormatError{Call: call, Message: "no phase delimiter"}
	}

	a, b := call[:i], call[i+1:]
	if a == "" || b == "" || strings.ContainsAny(b, "|/") {
		return "", "", &FormatError{Call: call, Message: "expected exactly two allele indices"}
	}
	return a, b, nil
}

// FormatError reports a genotype call that is not two delimited allele
// indices.
type FormatError struct {
	Call    string
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("genotype format error: %q: %s", e.Call, e.Message)
}
