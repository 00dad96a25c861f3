// Package provisioning guarantees that a user profile row exists before any
// record referencing the user is written.
//
// A profile can appear through three overlapping paths: a database trigger
// that fires some time after sign-up, a remote "ensure profile" function,
// and a direct insert that the access policy may reject. Ensure walks an
// ordered chain and stops at the first definitive success:
//
//  1. read the row
//  2. call the sync function, then re-read after a short delay
//  3. insert directly; a duplicate key counts as success and a permission
//     rejection starts a bounded poll of the row
//  4. read the row one last time
//
// Only a miss at step 4 fails, with PROVISIONING_FAILED and a hint telling
// the operator how to create the row by hand. Steps run strictly in order and
// every backend failure along the way is classified by error code, never by
// message text.
package provisioning
