package constants

import "os"

func GetPort() string {
	port := os.Getenv("PORT")
	if port != "" {
		return port
	}
	return "8080"
}

func GetDynamoEndpoint() string {
	endpoint := os.Getenv("DYNAMO_ENDPOINT")
	if endpoint != "" {
		return endpoint
	}
	return "http://localhost:8000"
}

func GetDynamoRegion() string {
	region := os.Getenv("DYNAMO_REGION")
	if region != "" {
		return region
	}
	return "localhost"
}

func GetArtifactTable() string {
	table := os.Getenv("ARTIFACT_TABLE")
	if table != "" {
		return table
	}
	return "choirgen-artifacts"
}

func GetArtifactStoreEnabled() bool {
	v := os.Getenv("ARTIFACT_STORE")
	return v == "1" || v == "true"
}

func GetAllowedOrigin() string {
	origin := os.Getenv("ALLOWED_ORIGIN")
	if origin != "" {
		return origin
	}
	return "*"
}
