package billing

// EffectiveLocked reports the lock state an editing surface must display.
// Immutable documents always read as locked regardless of the stored flag.
func EffectiveLocked(doc *Document) bool {
	if DocumentMutability(doc) == Immutable {
		return true
	}
	return doc.IsLocked
}

// CheckLockToggle validates a lock or unlock request without applying it.
//
// Locking is "save and freeze", not a flag flip: the document must pass
// full field validation first. Unlocking is permitted whenever the document
// is not hard-terminal. Callers flip the flag optimistically and roll back
// exactly when this (or the subsequent write) fails.
func CheckLockToggle(doc *Document, locked bool) error {
	if DocumentMutability(doc) == Immutable {
		return MutabilityError(Immutable, doc.ArchivedAt != nil)
	}
	if locked {
		if err := ValidateDocument(doc); err != nil {
			return err
		}
	}
	return nil
}
