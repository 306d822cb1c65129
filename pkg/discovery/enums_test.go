package discovery

import "testing"

func TestServiceTypeValidate(t *testing.T) {
	tests := []struct {
		name    string
		service ServiceType
		wantErr bool
	}{
		{"udp service", "_dscv._udp.", false},
		{"tcp service", "_printer._tcp.", false},
		{"missing trailing period", "_dscv._udp", true},
		{"missing leading underscore", "dscv._udp.", true},
		{"empty name", "_._udp.", true},
		{"empty string", "", true},
		{"wrong protocol", "_dscv._sctp.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.service.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.service, err, tt.wantErr)
			}
			if tt.service.IsValid() == tt.wantErr {
				t.Errorf("IsValid(%q) = %v, want %v", tt.service, tt.service.IsValid(), !tt.wantErr)
			}
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	if got := normalizeDomain(""); got != DefaultDomain {
		t.Errorf("normalizeDomain(\"\") = %q, want %q", got, DefaultDomain)
	}
	if got := normalizeDomain("example.org."); got != "example.org." {
		t.Errorf("normalizeDomain() = %q, want unchanged", got)
	}
}

func TestRegisterString(t *testing.T) {
	if got := ServiceType("_dscv._udp.").registerString(); got != "_dscv._udp" {
		t.Errorf("registerString() = %q, want %q", got, "_dscv._udp")
	}
}
