package billing

// AccountRef is an optional processor account identifier used for multi-account
// routing. The zero value is NoAccount.
type AccountRef struct {
	id    string
	valid bool
}

// SomeAccount returns a reference to the given account. An empty id yields NoAccount.
func SomeAccount(id string) AccountRef {
	if id == "" {
		return NoAccount()
	}
	return AccountRef{id: id, valid: true}
}

// NoAccount returns the absent account reference
func NoAccount() AccountRef {
	return AccountRef{}
}

// AccountFromPtr converts a nullable column value to an AccountRef
func AccountFromPtr(id *string) AccountRef {
	if id == nil {
		return NoAccount()
	}
	return SomeAccount(*id)
}

// Get returns the account id and whether it is present
func (a AccountRef) Get() (string, bool) {
	return a.id, a.valid
}

// IsSome reports whether an account is present
func (a AccountRef) IsSome() bool {
	return a.valid
}

// Ptr returns the account as a nullable value
func (a AccountRef) Ptr() *string {
	if !a.valid {
		return nil
	}
	id := a.id
	return &id
}

// Equal reports whether both references are absent or name the same account
func (a AccountRef) Equal(other AccountRef) bool {
	return a.valid == other.valid && a.id == other.id
}

// String returns the account id, or "-" when absent
func (a AccountRef) String() string {
	if !a.valid {
		return "-"
	}
	return a.id
}
