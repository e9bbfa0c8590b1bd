// Package password provides argon2id hashing with PHC-encoded output and
// cost-parameter upgrade detection.
package password
