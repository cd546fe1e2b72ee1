package svc

import "errors"

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")

// ErrOCRInitFailed 错误：识别引擎初始化失败
var ErrOCRInitFailed = errors.New("ocr initialization failed")
