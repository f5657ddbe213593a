/*
 * Copyright 2026 VisaDesk Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStackVar_Precedence(t *testing.T) {
	t.Run("default wins when nothing is set", func(t *testing.T) {
		assert.Equal(t, "5433", stackVar("LOCAL_STACK_DB_PORT", "COMPANION_DB_PORT", "5433"))
	})

	t.Run("desktop-scoped variable beats the default", func(t *testing.T) {
		t.Setenv("COMPANION_DB_PORT", "6000")

		assert.Equal(t, "6000", stackVar("LOCAL_STACK_DB_PORT", "COMPANION_DB_PORT", "5433"))
	})

	t.Run("explicit override beats both", func(t *testing.T) {
		t.Setenv("COMPANION_DB_PORT", "6000")
		t.Setenv("LOCAL_STACK_DB_PORT", "7000")

		assert.Equal(t, "7000", stackVar("LOCAL_STACK_DB_PORT", "COMPANION_DB_PORT", "5433"))
	})
}

func TestStackEnv_ResolvedPerInvocation(t *testing.T) {
	env := StackEnv("/data/root", func() string { return "sekrit" })

	assert.Contains(t, env(), "POSTGRES_PORT=5433")
	assert.Contains(t, env(), "VAULT_KEY=sekrit")
	assert.Contains(t, env(), "DATA_ROOT=/data/root")

	// Externally changed configuration takes effect on the next call
	// without reconstructing anything.
	t.Setenv("COMPANION_DB_PORT", "6001")

	assert.Contains(t, env(), "POSTGRES_PORT=6001")
}

func TestStackEnv_NilVaultKey(t *testing.T) {
	env := StackEnv("/data/root", nil)

	assert.Contains(t, env(), "VAULT_KEY=")
}
