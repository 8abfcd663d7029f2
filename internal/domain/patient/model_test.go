package patient

import "testing"

func TestPatient_Contact(t *testing.T) {
	email, phone, empty := "an@example.com", "+84 90 000 0000", ""

	tests := []struct {
		name string
		p    Patient
		want string
	}{
		{"email preferred", Patient{Email: &email, Phone: &phone}, email},
		{"phone fallback", Patient{Phone: &phone}, phone},
		{"empty email falls back", Patient{Email: &empty, Phone: &phone}, phone},
		{"nothing on file", Patient{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Contact(); got != tt.want {
				t.Errorf("Contact() = %q, want %q", got, tt.want)
			}
		})
	}
}
