package config

import "os"

type Config struct {
	ServerAddress           string
	MongoURI                string
	MongoDatabase           string
	JWTSecret               string
	FirebaseProjectID       string
	FirebaseCredentialsJSON string
	FlagMailAPIKey          string
	FlagMailFrom            string
	FlagMailTo              string
}

func Load() *Config {
	return &Config{
		ServerAddress:           getEnv("SERVER_ADDRESS", ":8080"),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DB", "clepfinder"),
		JWTSecret:               getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		FlagMailAPIKey:          getEnv("FLAG_MAIL_API_KEY", ""),
		FlagMailFrom:            getEnv("FLAG_MAIL_FROM", ""),
		FlagMailTo:              getEnv("FLAG_MAIL_TO", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
