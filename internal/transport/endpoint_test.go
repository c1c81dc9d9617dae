package transport

import "testing"

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		endpoint    string
		defaultPort string
		wantHost    string
		wantAddr    string
		wantErr     bool
	}{
		{"bare host smtp default", "smtp.x.com", DefaultSMTPPort, "smtp.x.com", "smtp.x.com:587", false},
		{"bare host imap default", "imap.x.com", DefaultIMAPPort, "imap.x.com", "imap.x.com:993", false},
		{"explicit port", "smtp.x.com:2525", DefaultSMTPPort, "smtp.x.com", "smtp.x.com:2525", false},
		{"surrounding whitespace", " imap.x.com ", DefaultIMAPPort, "imap.x.com", "imap.x.com:993", false},
		{"empty", "", DefaultSMTPPort, "", "", true},
		{"missing host", ":587", DefaultSMTPPort, "", "", true},
		{"garbage", "a:b:c", DefaultSMTPPort, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, addr, err := splitEndpoint(tt.endpoint, tt.defaultPort)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitEndpoint() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if host != tt.wantHost {
				t.Errorf("host = %q, want %q", host, tt.wantHost)
			}
			if addr != tt.wantAddr {
				t.Errorf("addr = %q, want %q", addr, tt.wantAddr)
			}
		})
	}
}
