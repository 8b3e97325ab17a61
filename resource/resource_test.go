package resource

import "testing"

func TestNewWithExplicitConfig(t *testing.T) {
	res := New("checkout", "2.1.0", "production", Config{
		HostName:   "node-7",
		InstanceID: "inst-42",
		Attributes: map[string]string{"region": "eu-west-1"},
	})

	if res.ServiceName != "checkout" {
		t.Errorf("expected service name 'checkout', got %q", res.ServiceName)
	}
	if res.ServiceVersion != "2.1.0" {
		t.Errorf("expected version '2.1.0', got %q", res.ServiceVersion)
	}
	if res.Environment != "production" {
		t.Errorf("expected environment 'production', got %q", res.Environment)
	}
	if res.HostName != "node-7" {
		t.Errorf("expected host 'node-7', got %q", res.HostName)
	}
	if res.InstanceID != "inst-42" {
		t.Errorf("expected instance 'inst-42', got %q", res.InstanceID)
	}
	if res.Attributes["region"] != "eu-west-1" {
		t.Errorf("expected region attribute, got %v", res.Attributes)
	}
}

func TestNewFallbacks(t *testing.T) {
	res := New("svc", "", "", Config{})

	if res.HostName == "" {
		t.Error("expected host name fallback from the OS")
	}
	if res.InstanceID == "" {
		t.Error("expected a generated instance ID")
	}
	if len(res.InstanceID) != 36 {
		t.Errorf("expected UUID-shaped instance ID, got %q", res.InstanceID)
	}
}

func TestNewGeneratesDistinctInstances(t *testing.T) {
	a := New("svc", "", "", Config{})
	b := New("svc", "", "", Config{})
	if a.InstanceID == b.InstanceID {
		t.Error("expected distinct instance IDs per Resource")
	}
}

func TestAttributesCopied(t *testing.T) {
	attrs := map[string]string{"zone": "a"}
	res := New("svc", "", "", Config{Attributes: attrs})

	attrs["zone"] = "mutated"
	if res.Attributes["zone"] != "a" {
		t.Errorf("expected attributes copied at construction, got %q", res.Attributes["zone"])
	}
}
