// Package vcf provides loading of per-sample genotype tables exported from
// variant call files.
package vcf

import (
	"fmt"
	"strings"
)

// Call is one sample's genotype at one variant: the long-form unit of a
// genotype table.
type Call struct {
	SampleID  string  // Cleaned sample column name
	VariantID string  // Composite CHROM:POS:REF:ALT identifier
	Chrom     string  // First component of VariantID
	Position  string  // Second component of VariantID, used as the column key downstream
	Ref       string  // Reference allele
	Alt       string  // Alternate allele(s)
	Genotype  string  // Genotype call, e.g. "0|2"
	Dosage    float64 // Estimated alternate-allele dosage
}

// variantIDParts is the number of colon-delimited components in a variant ID.
const variantIDParts = 4

// SplitVariantID decomposes a CHROM:POS:REF:ALT identifier.
func SplitVariantID(id string) (chrom, pos, ref, alt string, err error) {
	parts := strings.Split(id, ":")
	if len(parts) != variantIDParts {
		return "", "", "", "", fmt.Errorf("variant ID %q has %d components, expected %d", id, len(parts), variantIDParts)
	}
	return parts[0], parts[1], parts[2], parts[3], nil
}

// FormatVariantID joins the components of a variant ID.
func FormatVariantID(chrom, pos, ref, alt string) string {
	return strings.Join([]string{chrom, pos, ref, alt}, ":")
}
