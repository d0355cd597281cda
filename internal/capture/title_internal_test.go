package capture

import "testing"

func TestExtractTitle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "simple title",
			html: "<html><head><title>Dashboard</title></head><body></body></html>",
			want: "Dashboard",
		},
		{
			name: "whitespace trimmed",
			html: "<html><head><title>\n  Login \n</title></head><body></body></html>",
			want: "Login",
		},
		{
			name: "no title",
			html: "<html><body><p>bare page</p></body></html>",
			want: "",
		},
		{
			name: "first title wins",
			html: "<html><head><title>First</title><title>Second</title></head></html>",
			want: "First",
		},
		{
			name: "not html at all",
			html: "plain text response",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extractTitle(tt.html); got != tt.want {
				t.Errorf("extractTitle = %q, want %q", got, tt.want)
			}
		})
	}
}
