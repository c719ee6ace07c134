package policy

// DefaultPackage is the Rego package queried for deny and warn rules.
const DefaultPackage = "todobuilder.integration"

// DefaultPolicyFile is the file name the built-in policy is written to.
const DefaultPolicyFile = "integration.rego"

// DefaultPolicy ships with every engine unless disabled. It blocks writes into
// protected zones and to secret-bearing files, and flags destructive
// migrations and large overwrites.
const DefaultPolicy = `package todobuilder.integration

import rego.v1

touched contains path if {
	some path in input.feature.files_created
}

touched contains path if {
	some path in input.feature.files_modified
}

secret_file(path) if endswith(path, ".env")

secret_file(path) if contains(path, "/.env.")

secret_file(path) if startswith(path, ".env.")

secret_file(path) if endswith(path, ".pem")

lockfile(path) if {
	some name in ["package-lock.json", "yarn.lock", "pnpm-lock.yaml"]
	endswith(path, name)
}

deny contains msg if {
	some path in touched
	some zone in input.context.protected_zones
	glob.match(zone, ["/"], path)
	msg := sprintf("%s is inside protected zone %s", [path, zone])
}

deny contains msg if {
	some path in touched
	secret_file(path)
	msg := sprintf("%s may hold secrets and cannot be generated", [path])
}

deny contains msg if {
	some path in touched
	lockfile(path)
	msg := sprintf("%s is a lockfile and is managed by the package manager", [path])
}

warn contains msg if {
	some sql in input.feature.migrations
	regex.match("(?i)\\b(drop|truncate)\\s+table\\b", sql)
	msg := "a migration drops or truncates a table"
}

warn contains msg if {
	some path in input.feature.files_modified
	todobuilder.file_line_count(path) > 400
	msg := sprintf("%s is a large existing file and will be replaced", [path])
}
`
