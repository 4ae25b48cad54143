package identity

import "regexp"

// Dutch sidecodes 1-14. X is a letter, 9 a digit.
var dutchSidecodes = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z]{2}\d{2}\d{2}$`),    // XX-99-99
	regexp.MustCompile(`^\d{2}\d{2}[A-Z]{2}$`),    // 99-99-XX
	regexp.MustCompile(`^\d{2}[A-Z]{2}\d{2}$`),    // 99-XX-99
	regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z]{2}$`), // XX-99-XX
	regexp.MustCompile(`^[A-Z]{2}[A-Z]{2}\d{2}$`), // XX-XX-99
	regexp.MustCompile(`^\d{2}[A-Z]{2}[A-Z]{2}$`), // 99-XX-XX
	regexp.MustCompile(`^\d{2}[A-Z]{3}\d{1}$`),    // 99-XXX-9
	regexp.MustCompile(`^\d{1}[A-Z]{3}\d{2}$`),    // 9-XXX-99
	regexp.MustCompile(`^[A-Z]{2}\d{3}[A-Z]{1}$`), // XX-999-X
	regexp.MustCompile(`^[A-Z]{1}\d{3}[A-Z]{2}$`), // X-999-XX
	regexp.MustCompile(`^[A-Z]{3}\d{2}[A-Z]{1}$`), // XXX-99-X
	regexp.MustCompile(`^[A-Z]{1}\d{2}[A-Z]{3}$`), // X-99-XXX
	regexp.MustCompile(`^\d{1}[A-Z]{2}\d{3}$`),    // 9-XX-999
	regexp.MustCompile(`^\d{3}[A-Z]{2}\d{1}$`),    // 999-XX-9
}

// IsValidDutchPlate checks plate against the Dutch sidecodes after
// normalization. Only registration uses it; messaging accepts any
// normalized identifier.
func IsValidDutchPlate(plate string) bool {
	p := Normalize(plate)
	if p == "" {
		return false
	}
	for _, re := range dutchSidecodes {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}
