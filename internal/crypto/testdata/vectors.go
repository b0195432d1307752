package testdata

// KDFVector is a known PBKDF2 input/output pair.
type KDFVector struct {
	Name       string
	Password   string
	Salt       string // ASCII
	Iterations int
	Hash       string
	Encoding   string // base64 or raw
	Key        string // Hex
}

// KDFVectors holds RFC 6070 vectors, SHA-256 vectors from the same inputs,
// and vectors for the base64 password pre-encoding.
var KDFVectors = []KDFVector{
	{
		Name:       "RFC 6070 SHA-1 c=1",
		Password:   "password",
		Salt:       "salt",
		Iterations: 1,
		Hash:       "SHA-1",
		Encoding:   "raw",
		Key:        "0c60c80f961f0e71f3a9b524af6012062fe037a6",
	},
	{
		Name:       "RFC 6070 SHA-1 c=2",
		Password:   "password",
		Salt:       "salt",
		Iterations: 2,
		Hash:       "SHA-1",
		Encoding:   "raw",
		Key:        "ea6c014dc72d6f8ccd1ed92ace1d41f0d8de8957",
	},
	{
		Name:       "RFC 6070 SHA-1 c=4096",
		Password:   "password",
		Salt:       "salt",
		Iterations: 4096,
		Hash:       "SHA-1",
		Encoding:   "raw",
		Key:        "4b007901b765489abead49d926f721d065a429c1",
	},
	{
		Name:       "SHA-256 c=1",
		Password:   "password",
		Salt:       "salt",
		Iterations: 1,
		Hash:       "SHA-256",
		Encoding:   "raw",
		Key:        "120fb6cffcf8b32c43e7225256c4f837a86548c92ccc35480805987cb70be17b",
	},
	{
		Name:       "SHA-256 c=2",
		Password:   "password",
		Salt:       "salt",
		Iterations: 2,
		Hash:       "SHA-256",
		Encoding:   "raw",
		Key:        "ae4d0c95af6b46d32d0adff928f06dd02a303f8ef3c251dfd6e2d85a95474c43",
	},
	{
		Name:       "SHA-256 c=4096",
		Password:   "password",
		Salt:       "salt",
		Iterations: 4096,
		Hash:       "SHA-256",
		Encoding:   "raw",
		Key:        "c5e478d59288c841aa530db6845c4c8d962893a001ce4e11a4963873aa98134a",
	},
	{
		Name:       "base64 SHA-256 c=1",
		Password:   "password",
		Salt:       "salt",
		Iterations: 1,
		Hash:       "SHA-256",
		Encoding:   "base64",
		Key:        "bbb4fc32e4e0ad7768954b39d2b88f2def9cea99159853c4ddeb44b4e61ae7da",
	},
	{
		Name:       "base64 Latin-1 SHA-256 c=1000",
		Password:   "pässword",
		Salt:       "0123456789abcdef",
		Iterations: 1000,
		Hash:       "SHA-256",
		Encoding:   "base64",
		Key:        "59e890b1407483c534fbebd0b79371994102f3a571f2782d7ffb2bce0b2e6b87",
	},
}
