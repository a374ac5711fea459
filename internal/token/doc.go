// Package token owns the cached credential for each databricks CLI
// profile. It decides when a credential is still usable, serializes
// refreshes so concurrent callers never trigger duplicate interactive
// logins, and guarantees an expired credential is never handed out.
//
// The per-profile credential state machine:
//
//	Absent -> Valid      first successful fetch
//	Valid  -> Expiring   time crosses expiry minus margin
//	Expiring -> Valid    successful refresh
//	Expiring -> Absent   refresh failure (error surfaced to callers)
package token
