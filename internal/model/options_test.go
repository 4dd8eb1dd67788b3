package model

import "testing"

func testSchema() OptionsSchema {
	return OptionsSchema{Fields: []OptionField{
		{Key: "format", Label: "Format", Kind: FieldDropdown, Choices: []string{"CBZ", "ZIP", "Folder"}, Default: "CBZ"},
		{Key: "data_saver", Label: "Data Saver", Kind: FieldCheckbox, Default: false},
		{Key: "concurrent_pages", Label: "Concurrent Pages", Kind: FieldNumber, Default: 3, Min: 1, Max: 5, Step: 1},
	}}
}

func TestOptionsSchema_Defaults(t *testing.T) {
	defaults := testSchema().Defaults()

	if defaults["format"] != "CBZ" {
		t.Errorf("expected default format CBZ, got %v", defaults["format"])
	}
	if defaults["data_saver"] != false {
		t.Errorf("expected default data_saver false, got %v", defaults["data_saver"])
	}
	if defaults["concurrent_pages"] != 3 {
		t.Errorf("expected default concurrent_pages 3, got %v", defaults["concurrent_pages"])
	}
}

func TestOptionsSchema_Validate(t *testing.T) {
	schema := testSchema()

	tests := []struct {
		name    string
		values  map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"format": "ZIP", "data_saver": true, "concurrent_pages": 2}, false},
		{"empty", map[string]any{}, false},
		{"unknown key", map[string]any{"quality": "high"}, true},
		{"bad choice", map[string]any{"format": "RAR"}, true},
		{"dropdown non-string", map[string]any{"format": 1}, true},
		{"number below min", map[string]any{"concurrent_pages": 0}, true},
		{"number above max", map[string]any{"concurrent_pages": 6}, true},
		{"number as float", map[string]any{"concurrent_pages": 4.0}, false},
		{"checkbox non-bool", map[string]any{"data_saver": "yes"}, true},
	}

	for _, test := range tests {
		err := schema.Validate(test.values)
		if (err != nil) != test.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", test.name, err, test.wantErr)
		}
	}
}

func TestOptionsSchema_Field(t *testing.T) {
	schema := testSchema()

	f, ok := schema.Field("format")
	if !ok || f.Kind != FieldDropdown {
		t.Errorf("expected dropdown field, got %+v (ok=%v)", f, ok)
	}

	if _, ok := schema.Field("missing"); ok {
		t.Error("expected missing field lookup to fail")
	}
}
