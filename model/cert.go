package model

// CertRecord is a newly issued or previously stored certificate: its
// thumbprint (stable store key), the PEM bytes (full chain + private key),
// and the name of the store plugin that holds it.
type CertRecord struct {
	Thumbprint string
	PEM        []byte
	StoreName  string
}

// RenewResult is the outcome of one renewal attempt (§3). Construct it with
// either Failure or SuccessResult — never populate both error and certificate.
type RenewResult struct {
	Success      bool
	ErrorMessage string
	Certificate  *CertRecord
}

// Failure builds a failed RenewResult carrying a human-readable message.
func Failure(message string) RenewResult {
	return RenewResult{Success: false, ErrorMessage: message}
}

// SuccessResult builds a successful RenewResult carrying the produced
// certificate.
func SuccessResult(cert *CertRecord) RenewResult {
	return RenewResult{Success: true, Certificate: cert}
}
