package crypto

// KeyMaterial exposes derived key bytes to tests.
func KeyMaterial(k *DerivedKey) []byte {
	return k.material
}

// NewKey wraps raw bytes as a derived key.
func NewKey(material []byte) *DerivedKey {
	return &DerivedKey{material: append([]byte(nil), material...)}
}
