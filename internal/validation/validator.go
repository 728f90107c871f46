package validation

// Validator checks decoded diagram documents before they are turned into a
// diagram model. Documents are JSON-compatible values (maps, slices,
// strings, json.Number, bools).
type Validator interface {
	ValidateDocument(doc any) error
}
