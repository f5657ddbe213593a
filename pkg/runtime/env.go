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

import "os"

// stackVar resolves one stack configuration value with fixed precedence:
// explicit override variable, then the desktop-scoped variable, then the
// hardcoded default. Read fresh on every call so externally changed
// configuration takes effect on the next command.
func stackVar(override, desktop, fallback string) string {
	if v := os.Getenv(override); v != "" {
		return v
	}

	if v := os.Getenv(desktop); v != "" {
		return v
	}

	return fallback
}

// StackEnv builds the environment passed to every compose invocation.
// The vault key is supplied by the caller; everything else resolves from
// the override / desktop-scoped / default chain.
func StackEnv(dataRoot string, vaultKey func() string) func() []string {
	return func() []string {
		key := ""
		if vaultKey != nil {
			key = vaultKey()
		}

		return []string{
			"POSTGRES_HOST=" + stackVar("LOCAL_STACK_DB_HOST", "COMPANION_DB_HOST", "127.0.0.1"),
			"POSTGRES_PORT=" + stackVar("LOCAL_STACK_DB_PORT", "COMPANION_DB_PORT", "5433"),
			"POSTGRES_USER=" + stackVar("LOCAL_STACK_DB_USER", "COMPANION_DB_USER", "visadesk"),
			"POSTGRES_PASSWORD=" + stackVar("LOCAL_STACK_DB_PASSWORD", "COMPANION_DB_PASSWORD", "visadesk"),
			"POSTGRES_DB=" + stackVar("LOCAL_STACK_DB_NAME", "COMPANION_DB_NAME", "visadesk"),
			"REDIS_HOST=" + stackVar("LOCAL_STACK_REDIS_HOST", "COMPANION_REDIS_HOST", "127.0.0.1"),
			"REDIS_PORT=" + stackVar("LOCAL_STACK_REDIS_PORT", "COMPANION_REDIS_PORT", "6380"),
			"NODE_ID=" + stackVar("LOCAL_STACK_NODE_ID", "COMPANION_NODE_ID", "desktop"),
			"SYNC_REMOTE_URL=" + stackVar("LOCAL_STACK_SYNC_URL", "COMPANION_SYNC_URL", ""),
			"SYNC_REMOTE_TOKEN=" + stackVar("LOCAL_STACK_SYNC_TOKEN", "COMPANION_SYNC_TOKEN", ""),
			"LOCAL_MODE=" + stackVar("LOCAL_STACK_LOCAL_MODE", "COMPANION_LOCAL_MODE", "1"),
			"VAULT_KEY=" + key,
			"DATA_ROOT=" + dataRoot,
		}
	}
}
