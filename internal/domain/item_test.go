package domain

import "testing"

func TestItem_ID(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want string
	}{
		{"directory renders name", Item{Name: "drums", Type: ItemDir, Index: -1}, "drums"},
		{"file renders index", Item{Name: "kick.wav", Type: ItemFile, Index: 42}, "42"},
		{"negative index", Item{Name: "a", Type: ItemFile, Index: -1}, "-1"},
		{"untyped renders index", Item{Name: "a", Index: 7}, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.ID(); got != tt.want {
				t.Errorf("ID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestItem_DisplayName(t *testing.T) {
	item := Item{Name: "song.wav", Type: ItemFile, Index: 3}
	if got := item.DisplayName(); got != "song.wav" {
		t.Errorf("DisplayName() = %q, want %q", got, "song.wav")
	}
}

func TestItemType_String(t *testing.T) {
	if ItemDir.String() != "D" || ItemFile.String() != "F" || ItemNone.String() != "-" {
		t.Errorf("unexpected tags: %s %s %s", ItemDir, ItemFile, ItemNone)
	}
}

func TestTransportType_IsValid(t *testing.T) {
	for _, tt := range []TransportType{TransportLocal, TransportGDrive, TransportSMB, TransportSlots} {
		if !tt.IsValid() {
			t.Errorf("%s should be valid", tt)
		}
	}
	if TransportType("ftp").IsValid() {
		t.Error("ftp should be invalid")
	}
}
