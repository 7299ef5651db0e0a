package revoke

import "testing"

func TestNew_NilConfigDisablesBroadcaster(t *testing.T) {
	b, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil): %v", err)
	}
	if b != nil {
		t.Errorf("expected a nil *Broadcaster when clustering is unconfigured, got %#v", b)
	}
}
