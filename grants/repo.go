package grants

// Repo manages stored authorization codes, keyed by the hash of the opaque
// code. Consume must perform lookup and deletion as one atomic operation so
// that concurrent redemption of the same code succeeds at most once; a
// failed conditional delete surfaces as a not-found error.
type Repo interface {
	Insert(code *AuthorizationCode) error
	Consume(codeHash string) (*AuthorizationCode, error)
}
