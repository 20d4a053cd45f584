// Package password hashes and verifies account passwords.
//
// New hashes use bcrypt by default, or Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.Verify] dispatches on the stored prefix so existing hashes of either
// scheme keep verifying after the configured algorithm changes. When a stored
// hash is weaker than the current settings, [Hasher.NeedsRehash] reports true
// and the caller may re-hash after the next successful login.
//
// Length and composition policy belongs to the engine; this package only
// rejects empty input and input beyond the byte cap. It never logs.
package password
