// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles configuration for the run and serve commands.

# Loading

Configuration is read in three layers, later layers winning:

	cfg, err := cliparse.Load(".env")   // .env file, then environment
	cliparse.BindRunFlags(runCmd, &cfg) // CLI flags
	err = cfg.Validate(cliparse.ModeRun)

The .env file is optional and never overrides variables already set.

# Environment Variables

Server:

	PORT            → -p, --port          (default 3318)
	DATABASE_URL    → -d, --database-url
	DATABASE_TYPE   → -t, --database-type (sqlite or postgres, default sqlite)
	REDIS_URL       → --redis-url         (optional snapshot cache)
	CACHE_TTL       → --cache-ttl         (default 10m)
	RUN_KEY_SALT    → --run-key-salt

Inputs:

	SURVEY_PATH, FRAME_PATH, RESULTS_PATH, RECODE_PATH
	TARGET_PARTY    → --party
	COVARIATES      → --covariates (comma separated)
	DRAW_FILES      → --draw-files (one CSV per chain)

Model and post-stratification:

	VARIANT         → --variant    (base, extended or both)
	CHAINS, ITERATIONS, WARMUP, SEED, RHAT_THRESHOLD
	DRAWS           → --draws      (default 50)
	INTERVAL        → --interval   (default 0.9)
	NEW_AREAS       → --new-areas  (error or population-mean)

Logging:

	LOG_LEVEL (debug, info, warn, error), LOG_FORMAT (text or json)

# Validation

Validate(ModeServe) requires a database URL and RUN_KEY_SALT.
Validate(ModeRun) requires the three input files, a target party (flag or
recode table), covariates for the extended variant, and sane sampler and
aggregation settings. Storing runs also requires RUN_KEY_SALT, because each
stored run gets a key.
*/
package cliparse
