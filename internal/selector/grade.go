package selector

import "strings"

// Sub-grades order lexically: A1 < A2 < ... < A5 < B1 < ... < G5. Lower
// sorts as better (less risky).

// ValidSubGrade reports whether s is a well-formed sub-grade (A1..G5).
func ValidSubGrade(s string) bool {
	if len(s) != 2 {
		return false
	}
	return s[0] >= 'A' && s[0] <= 'G' && s[1] >= '1' && s[1] <= '5'
}

// CompareSubGrades orders two valid sub-grades; negative means a is the
// better (lower-risk) grade.
func CompareSubGrades(a, b string) int {
	return strings.Compare(a, b)
}

// LetterGrade returns the letter component of a sub-grade ("C1" -> "C").
func LetterGrade(subGrade string) string {
	if subGrade == "" {
		return ""
	}
	return subGrade[:1]
}
