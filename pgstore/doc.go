// Package pgstore serves records, user profiles and server-side functions
// straight from a relational database through gorm.
//
// It is the data half of the hybrid backend: identity stays with the hosted
// auth service while reads and writes go to PostgreSQL directly. Driver
// failures are classified by SQLSTATE into the codes of package errors, so
// callers see the same ALREADY_EXISTS or FORBIDDEN whichever backend served
// the request.
//
// The embedded migrations create the profiles table and the
// ensure_user_profile function used by profile provisioning.
package pgstore
