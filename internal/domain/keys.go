package domain

// KeyPrefix namespaces every key this service writes to Valkey/Redis.
const KeyPrefix = "polyqa:"
