// Package identity decodes bearer credentials from the external identity
// provider into the claims the authorization engine consumes. The engine
// must work whether or not the role-name claim is present or current.
package identity
