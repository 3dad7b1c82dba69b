/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package archive

import "errors"

var (
	ErrNotFound       = errors.New("archived object not found")
	ErrExists         = errors.New("archived object already exists")
	ErrInvalidKey     = errors.New("invalid archive key")
	ErrUnknownDriver  = errors.New("unknown archive driver")
	ErrBucketRequired = errors.New("s3 bucket is required")
)
