package store

import (
	"context"
	"testing"

	"perceptkit/internal/artifact"
)

func barcodeArtifact(content any, texts ...string) *artifact.Artifact {
	a := &artifact.Artifact{Content: content}
	for _, t := range texts {
		a.Targets = append(a.Targets, artifact.Barcode{Text: t})
	}
	return a
}

func TestLocalStoreMultiTargetCount(t *testing.T) {
	s := NewLocalStore()
	a := barcodeArtifact("card", "A", "B", "C")
	n, err := s.AddArtifact(context.Background(), a)
	if err != nil {
		t.Fatalf("AddArtifact: %v", err)
	}
	if n != 3 {
		t.Fatalf("stored %d targets, want 3", n)
	}
	for _, text := range []string{"A", "B", "C"} {
		got, err := s.FindRelevant(context.Background(), []artifact.Marker{{Type: "qrcode", Value: text}}, artifact.GeoCoordinates{}, nil)
		if err != nil {
			t.Fatalf("FindRelevant(%q): %v", text, err)
		}
		if len(got) != 1 || got[0].Artifact != a {
			t.Fatalf("marker %q did not resolve to the inserted artifact", text)
		}
	}
}

func TestLocalStoreLastWriteWins(t *testing.T) {
	s := NewLocalStore()
	first := barcodeArtifact("first", "X")
	second := barcodeArtifact("second", "X")
	if _, err := s.AddArtifact(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddArtifact(context.Background(), second); err != nil {
		t.Fatal(err)
	}
	got, err := s.FindRelevant(context.Background(), []artifact.Marker{{Type: "qrcode", Value: "X"}}, artifact.GeoCoordinates{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Artifact != second {
		t.Fatalf("collision did not overwrite: resolved content %v", got[0].Artifact.Content)
	}
}

func TestLocalStoreTypeIsolation(t *testing.T) {
	s := NewLocalStore()
	a := &artifact.Artifact{Targets: []artifact.Target{artifact.ImageTarget{Name: "poster"}}}
	if _, err := s.AddArtifact(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	// "poster" exists only in the image index; a marker with the same
	// value must not cross-resolve.
	got, err := s.FindRelevant(context.Background(), []artifact.Marker{{Type: "qrcode", Value: "poster"}}, artifact.GeoCoordinates{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("marker resolved against the image index: %v", got)
	}
	got, err = s.FindRelevant(context.Background(), nil, artifact.GeoCoordinates{}, []artifact.DetectedImage{{ID: "poster"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("image id did not resolve, got %d results", len(got))
	}
}

func TestLocalStoreUnusableTargets(t *testing.T) {
	s := NewLocalStore()
	a := &artifact.Artifact{Targets: []artifact.Target{
		artifact.Barcode{},
		artifact.ImageTarget{},
	}}
	n, err := s.AddArtifact(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("stored %d targets, want 0", n)
	}
}

func TestLocalStoreStableRecordIdentity(t *testing.T) {
	s := NewLocalStore()
	if _, err := s.AddArtifact(context.Background(), barcodeArtifact(nil, "X")); err != nil {
		t.Fatal(err)
	}
	markers := []artifact.Marker{{Type: "qrcode", Value: "X"}}
	first, _ := s.FindRelevant(context.Background(), markers, artifact.GeoCoordinates{}, nil)
	second, _ := s.FindRelevant(context.Background(), markers, artifact.GeoCoordinates{}, nil)
	if len(first) != 1 || len(second) != 1 {
		t.Fatal("expected one result per lookup")
	}
	if first[0] != second[0] {
		t.Fatal("repeated lookups returned distinct record instances")
	}
	if first[0].ID == "" {
		t.Fatal("stored record has no slot id")
	}
}

func TestMarkerStoreInputOrderAndDuplicates(t *testing.T) {
	s := NewMarkerStore()
	a := barcodeArtifact(nil, "A", "B")
	s.Add(a, artifact.Barcode{Text: "B"})
	s.Add(a, artifact.Barcode{Text: "A"})
	got := s.FindRelevant([]string{"B", "missing", "A", "B"})
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	if got[0].Target.(artifact.Barcode).Text != "B" || got[1].Target.(artifact.Barcode).Text != "A" {
		t.Fatal("output does not follow input order")
	}
	if got[0] != got[2] {
		t.Fatal("duplicate inputs must resolve to the same record")
	}
}
