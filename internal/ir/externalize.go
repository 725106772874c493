package ir

// Externalize turns every variable and procedure of scope into a
// declaration that is defined elsewhere: bodies and initializers (except
// those of named constants) are dropped and the ABI becomes ABIExternal. Nested modules are processed
// recursively and marked as loaded from cache. It is applied to modules
// restored from a module cache so their internals are not emitted again.
func (u *Unit) Externalize(scope ScopeID) {
	sc := u.Scope(scope)
	if sc == nil {
		return
	}
	for _, id := range sc.Symbols() {
		sym := u.Symbol(id)
		switch d := sym.Data.(type) {
		case *VariableData:
			if d.Storage != StorageParameter {
				d.Init = nil
			}
			d.ABI = ABIExternal
		case *FunctionData:
			d.Body = nil
			d.ABI = ABIExternal
		case *ModuleData:
			d.LoadedFromCache = true
			u.Externalize(d.Scope)
		}
	}
}
