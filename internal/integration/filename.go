package integration

import (
	"fmt"
	"strings"
)

// FileName builds the outbound name {env}{code}{seq}.{ext}, e.g. TECRTF000012.DAT.
func FileName(env, code string, seq int64, digits int, ext string) string {
	return fmt.Sprintf("%s%s%0*d.%s", strings.ToUpper(env), code, digits, seq, strings.ToUpper(ext))
}

// Outbound file codes.
const (
	CodeSINRequest       = "SINV"
	CodeMSFAAFullTime    = "MSFAF"
	CodeMSFAAPartTime    = "MSFAP"
	CodeECertFullTime    = "ECRTF"
	CodeECertPartTime    = "ECRTP"
	CodeCRARequest       = "CRAR"
	DefaultSequenceWidth = 6
	CRASequenceWidth     = 5
)
