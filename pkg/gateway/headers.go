// Package gateway implements the end-to-end request authenticator
// pipeline, plus the AK/SK signature scheme and the request-body crypto
// envelope.
package gateway

// HeaderConfig names the configurable header keys, with
// defaults ("Bios-Token" etc. — all header names are configurable).
type HeaderConfig struct {
	Token         string
	App           string
	Protocol      string
	Authorization string
	Date          string
	Ctx           string
	Crypto        string
}

// DefaultHeaderConfig returns the platform's default header names.
func DefaultHeaderConfig() HeaderConfig {
	return HeaderConfig{
		Token:         "Bios-Token",
		App:           "Bios-App",
		Protocol:      "Bios-Protocol",
		Authorization: "Bios-Authorization",
		Date:          "Bios-Date",
		Ctx:           "Bios-Ctx",
		Crypto:        "Bios-Crypto",
	}
}

// DefaultProtocol is the resource protocol assumed when the protocol
// header is absent.
const DefaultProtocol = "iam-res"

// DefaultDateIntervalMillis bounds how far an AK/SK request's Bios-Date
// header may drift from now before it is rejected: `head_date_interval_millsec`,
// default 5000ms.
const DefaultDateIntervalMillis = 5000
