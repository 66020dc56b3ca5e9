package config

const DefaultAWSRegion = "eu-central-1"
