package helpers

// Ptr returns a pointer to v. Optional fields of the feedback record are
// pointers so that an unanswered question is sent as null.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns *p, or def when p is nil.
func Deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
