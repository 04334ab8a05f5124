package topic

import "testing"

func TestTopic_Segments(t *testing.T) {
	tests := []struct {
		topic    Topic
		expected []string
	}{
		{Topic("analytics.track.batch"), []string{"analytics", "track", "batch"}},
		{Topic("lifecycle"), []string{"lifecycle"}},
		{Topic(""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.topic.String(), func(t *testing.T) {
			got := tt.topic.Segments()
			if len(got) != len(tt.expected) {
				t.Fatalf("Segments() = %v, want %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Segments()[%d] = %q, want %q", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestTopic_IsValid(t *testing.T) {
	tests := []struct {
		topic Topic
		valid bool
	}{
		{"lifecycle.start", true},
		{"hub", true},
		{"**", true},
		{"", false},
		{".start", false},
		{"lifecycle.", false},
		{"lifecycle..start", false},
	}

	for _, tt := range tests {
		if got := tt.topic.IsValid(); got != tt.valid {
			t.Errorf("Topic(%q).IsValid() = %v, want %v", tt.topic, got, tt.valid)
		}
	}
}

func TestTopic_IsWildcard(t *testing.T) {
	if Topic("lifecycle.start").IsWildcard() {
		t.Error("plain topic reported as wildcard")
	}
	if !Topic("lifecycle.*").IsWildcard() || !Any.IsWildcard() {
		t.Error("wildcard pattern not reported as wildcard")
	}
}

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		topic   Topic
		pattern Topic
		match   bool
	}{
		{"analytics.track", "analytics.track", true},
		{"analytics.track", "Analytics.TRACK", true},
		{"analytics.track", "analytics.*", true},
		{"analytics.track.batch", "analytics.*", false},
		{"analytics.track.batch", "analytics.**", true},
		{"analytics", "analytics.**", true},
		{"lifecycle.start", "*.start", true},
		{"session.start", "*.start", true},
		{"lifecycle.stop", "*.start", false},
		{"a.b.c.d", "a.**.d", true},
		{"a.d", "a.**.d", true},
		{"a.b.c", "a.**.d", false},
		{"anything.at.all", Any, true},
		{"analytics.track", "identity.*", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.topic)+"~"+string(tt.pattern), func(t *testing.T) {
			if got := tt.topic.Matches(tt.pattern); got != tt.match {
				t.Errorf("Topic(%q).Matches(%q) = %v, want %v", tt.topic, tt.pattern, got, tt.match)
			}
		})
	}
}

func BenchmarkTopic_Matches_MultiWildcard(b *testing.B) {
	t := Topic("analytics.track.batch.flush")
	p := Topic("analytics.**.flush")
	for i := 0; i < b.N; i++ {
		t.Matches(p)
	}
}
