// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cache provides a read-through cache for run snapshots.

Snapshots never change after a run is stored, so entries only need
invalidating when a run is deleted. RedisCache is used when REDIS_URL is
set; Noop otherwise. Memory serves single-process setups and tests.

Keys have the form mrpcast:run:<id>.
*/
package cache
