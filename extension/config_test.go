package extension

import "testing"

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name         string
		yaml         Config
		programmatic Config
		want         Config
	}{
		{
			name: "defaults fill empty config",
			want: DefaultConfig(),
		},
		{
			name:         "yaml wins",
			yaml:         Config{PublicationInterval: 12, PublicationOffset: 3, JournalBatchSize: 10},
			programmatic: Config{PublicationInterval: 4, JournalBatchSize: 50, Seed: 9},
			want:         Config{PublicationInterval: 12, PublicationOffset: 3, JournalBatchSize: 10, Seed: 9},
		},
		{
			name:         "programmatic schedule fills gap",
			programmatic: Config{PublicationInterval: 4, PublicationOffset: 1, DisableMigrate: true},
			want:         Config{PublicationInterval: 4, PublicationOffset: 1, JournalBatchSize: 100, Seed: 1, DisableMigrate: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mergeConfigurations(tt.yaml, tt.programmatic); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildMarketOpts(t *testing.T) {
	e := New(WithPublicationSchedule(8, 2))
	e.config = mergeWithDefaults(e.config)
	if n := len(e.buildMarketOpts()); n != 1 {
		t.Errorf("options = %d, want 1", n)
	}
}
