package main

import (
	"reflect"
	"testing"
)

func TestParseKeyValues_SplitsOnEquals(t *testing.T) {
	got := parseKeyValues([]string{"topic=billing", "retries=3"})
	want := map[string]any{"topic": "billing", "retries": "3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseKeyValues_BareKeyBecomesEmptyValue(t *testing.T) {
	got := parseKeyValues([]string{"flag"})
	want := map[string]any{"flag": ""}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseKeyValues_EmptyInputReturnsNil(t *testing.T) {
	if got := parseKeyValues(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
