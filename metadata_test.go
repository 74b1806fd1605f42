// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"encoding/json"
	"errors"
	"testing"
)

// testScopeResolver resolves scopes against a fixed resource set.
func testScopeResolver(resources ...string) func(string) Scope {
	set := make(map[string]bool, len(resources))
	for _, resource := range resources {
		set[resource] = true
	}

	return func(virtualPath string) Scope {
		return ResolveScope(virtualPath, DefaultMetadataPrefix, func(candidate string) bool {
			return set[candidate]
		})
	}
}

func TestMetadataStoreGet(t *testing.T) {
	t.Parallel()

	store := newMetadataStore()
	store.set(map[string]string{
		"/hello.txt/a":   "1",
		"/hello.txt/b/c": "2",
		"/hello.txtx":    "3",
		"/Metadata/d":    "4",
	})

	got := store.get("/hello.txt")
	if len(got) != 2 {
		t.Fatalf("get(/hello.txt) len=%d, want 2: %v", len(got), got)
	}
	if got["/hello.txt/a"] != "1" || got["/hello.txt/b/c"] != "2" {
		t.Fatalf("get(/hello.txt)=%v", got)
	}

	exact := store.get("/Metadata/d")
	if len(exact) != 1 || exact["/Metadata/d"] != "4" {
		t.Fatalf("get(/Metadata/d)=%v", exact)
	}

	if none := store.get("/missing"); len(none) != 0 {
		t.Fatalf("get(/missing)=%v, want empty", none)
	}

	if store.len() != 4 {
		t.Fatalf("len=%d, want 4", store.len())
	}
}

func TestMetadataStoreSetOverwrites(t *testing.T) {
	t.Parallel()

	store := newMetadataStore()
	store.set(map[string]string{"/a/b": "old"})
	store.set(map[string]string{"/a/b": "new"})

	if got := store.get("/a/b")["/a/b"]; got != "new" {
		t.Fatalf("value=%q, want %q", got, "new")
	}
	if store.len() != 1 {
		t.Fatalf("len=%d, want 1", store.len())
	}
}

func TestMetadataStoreEmpty(t *testing.T) {
	t.Parallel()

	store := newMetadataStore()
	if !store.empty() {
		t.Fatal("new store must be empty")
	}

	store.mimeType = "application/x-ufp"
	if store.empty() {
		t.Fatal("store with MIME type must not be empty")
	}
}

func TestMetadataSerializeScopes(t *testing.T) {
	t.Parallel()

	store := newMetadataStore()
	store.mimeType = "application/x-ufp"
	store.set(map[string]string{
		"/Metadata/some/global/setting": "global",
		"/hello.txt/test":               "attached",
		"/also/global/entry":            "orphan",
	})

	data, err := store.serialize(testScopeResolver("/hello.txt"))
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	var doc struct {
		Scopes   map[string]map[string]string `json:"scopes"`
		MimeType string                       `json:"mime_type"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, data)
	}

	if doc.MimeType != "application/x-ufp" {
		t.Fatalf("mime_type=%q", doc.MimeType)
	}

	global := doc.Scopes[globalScopeKey]
	if global["Metadata/some/global/setting"] != "global" || global["also/global/entry"] != "orphan" {
		t.Fatalf("global scope=%v", global)
	}

	resource := doc.Scopes["/hello.txt"]
	if len(resource) != 1 || resource["test"] != "attached" {
		t.Fatalf("resource scope=%v", resource)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	t.Parallel()

	src := newMetadataStore()
	src.mimeType = "model/3mf"
	src.set(map[string]string{
		"/Metadata/printer":        "S5",
		"/3D/model.gcode/time":     "3600",
		"/3D/model.gcode/nested/a": "b",
	})

	resolve := testScopeResolver("/3D/model.gcode")
	data, err := src.serialize(resolve)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	dst := newMetadataStore()
	if err := dst.deserialize(data); err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if dst.mimeType != "model/3mf" {
		t.Fatalf("mimeType=%q", dst.mimeType)
	}

	for key, want := range map[string]string{
		"/Metadata/printer":        "S5",
		"/3D/model.gcode/time":     "3600",
		"/3D/model.gcode/nested/a": "b",
	} {
		got := dst.get(key)
		if len(got) != 1 || got[key] != want {
			t.Fatalf("get(%q)=%v, want %q", key, got, want)
		}
	}

	again, err := dst.serialize(resolve)
	if err != nil {
		t.Fatalf("serialize again: %v", err)
	}
	if string(again) != string(data) {
		t.Fatalf("re-serialized document differs:\n%s\nvs\n%s", again, data)
	}
}

func TestMetadataDeserializeCorrupt(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		data string
	}{
		{name: "not json", data: "{"},
		{name: "bad scope", data: `{"scopes":{"//":{"a":"b"}}}`},
		{name: "bad key", data: `{"scopes":{"/":{"a//b":"c"}}}`},
		{name: "wrong value type", data: `{"scopes":{"/":{"a":1}}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := newMetadataStore().deserialize([]byte(tc.data))
			if !errors.Is(err, ErrArchiveCorrupt) {
				t.Fatalf("deserialize err=%v, want ErrArchiveCorrupt", err)
			}
		})
	}
}
