package imaging

import (
	"bytes"
	"errors"
	"testing"
)

func TestSplitDataURL(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantMIME    string
		wantPayload string
		wantErr     bool
	}{
		{
			name:        "jpeg payload",
			input:       "data:image/jpeg;base64,aGVsbG8=",
			wantMIME:    "image/jpeg",
			wantPayload: "aGVsbG8=",
		},
		{
			name:        "png payload",
			input:       "data:image/png;base64,AAAA",
			wantMIME:    "image/png",
			wantPayload: "AAAA",
		},
		{
			name:    "missing scheme",
			input:   "image/jpeg;base64,aGVsbG8=",
			wantErr: true,
		},
		{
			name:    "missing separator",
			input:   "data:image/jpeg;base64",
			wantErr: true,
		},
		{
			name:    "not base64 encoded",
			input:   "data:text/plain,hello",
			wantErr: true,
		},
		{
			name:    "empty payload",
			input:   "data:image/png;base64,",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mime, payload, err := SplitDataURL(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidDataURL) {
					t.Fatalf("err = %v, want ErrInvalidDataURL", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SplitDataURL returned error: %v", err)
			}
			if mime != tc.wantMIME {
				t.Fatalf("mime = %q, want %q", mime, tc.wantMIME)
			}
			if payload != tc.wantPayload {
				t.Fatalf("payload = %q, want %q", payload, tc.wantPayload)
			}
		})
	}
}

func TestParseDataURLRejectsBadBase64(t *testing.T) {
	if _, _, err := ParseDataURL("data:image/png;base64,!!!!"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestEncodeDataURLRoundTrip(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef}
	encoded := EncodeDataURL("image/png", data)

	mime, decoded, err := ParseDataURL(encoded)
	if err != nil {
		t.Fatalf("ParseDataURL returned error: %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("mime = %q, want image/png", mime)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("decoded bytes mismatch: %v vs %v", decoded, data)
	}
}
