package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time parses duration values
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values are enforced by must() and
// missing values stop the process at startup; tuning knobs fall back to
// sensible defaults instead.
type Config struct {
    Env                string        // application environment (e.g. "dev", "prod")
    Port               string        // HTTP port to listen on
    DBUser             string        // database username
    DBPass             string        // database password (optional)
    DBHost             string        // database host address
    DBPort             string        // database port number
    DBName             string        // database name
    JWTSecret          string        // secret used to sign session cookies
    SessionTTLDays     int           // lifetime of the session cookie in days
    SpotifyClientID    string        // Spotify application client id
    SpotifySecret      string        // Spotify application client secret
    SpotifyRedirectURI string        // redirect URI registered with Spotify for the consent flow
    FrontendURL        string        // where the consent callback sends the browser afterwards
    RoomCodeAlphabet   string        // characters room codes are drawn from
    RoomCodeLength     int           // number of characters in a room code
    PlaybackCacheTTL   time.Duration // how long a polled playback state stays fresh
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:                must("APP_ENV"),                            // environment (dev/test/prod)
        Port:               must("APP_PORT"),                           // port to bind the HTTP server
        DBUser:             must("DB_USER"),                            // database user
        DBPass:             os.Getenv("DB_PASS"),                       // database password (empty allowed)
        DBHost:             must("DB_HOST"),                            // database host
        DBPort:             must("DB_PORT"),                            // database port
        DBName:             must("DB_NAME"),                            // database name
        JWTSecret:          must("JWT_SECRET"),                         // secret for signing session cookies
        SessionTTLDays:     envInt("SESSION_TTL_DAYS", 30),             // session cookie lifetime
        SpotifyClientID:    must("SPOTIFY_CLIENT_ID"),                  // Spotify app credentials
        SpotifySecret:      must("SPOTIFY_CLIENT_SECRET"),              // Spotify app secret
        SpotifyRedirectURI: must("SPOTIFY_REDIRECT_URI"),               // OAuth callback URL
        FrontendURL:        envStr("FRONTEND_URL", "/"),                // post-consent redirect target
        RoomCodeAlphabet:   envStr("ROOM_CODE_ALPHABET", ""),           // empty -> registry default
        RoomCodeLength:     envInt("ROOM_CODE_LENGTH", 0),              // zero  -> registry default
        PlaybackCacheTTL:   envDur("PLAYBACK_CACHE_TTL", time.Second),  // playback poll cache freshness
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// envStr returns the variable's value or a default when unset.
func envStr(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

// envInt returns the variable parsed as an int or a default when unset or
// malformed.
func envInt(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return def
}

// envDur returns the variable parsed as a time.Duration or a default.
func envDur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if d, err := time.ParseDuration(v); err == nil {
        return d
    }
    return def
}
